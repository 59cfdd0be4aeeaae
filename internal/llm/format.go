package llm

import (
	"regexp"
	"strings"
)

var (
	firstCodeBlock = regexp.MustCompile("```(?:[a-zA-Z]+)?\n([\\s\\S]+?)```")
	anyCodeBlock   = regexp.MustCompile("```[a-zA-Z]*\n[\\s\\S]+?```")
)

// SplitCode выделяет из ответа модели первый fenced-блок кода и убирает
// все такие блоки из пояснения. Если блока нет, code пустой.
func SplitCode(reply string) (explanation string, code string) {
	if m := firstCodeBlock.FindStringSubmatch(reply); m != nil {
		code = strings.TrimSpace(m[1])
	}
	explanation = strings.TrimSpace(anyCodeBlock.ReplaceAllString(reply, ""))
	return explanation, code
}
