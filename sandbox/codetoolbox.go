package sandbox

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// CodeLanguage 代码执行使用的语言。
type CodeLanguage string

const (
	CodeLanguagePython     CodeLanguage = "python"
	CodeLanguageTypeScript CodeLanguage = "typescript"
	CodeLanguageJavaScript CodeLanguage = "javascript"
)

// ParseCodeLanguage 解析语言名，空字符串返回 python。
func ParseCodeLanguage(s string) (CodeLanguage, error) {
	switch l := CodeLanguage(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return CodeLanguagePython, nil
	case CodeLanguagePython, CodeLanguageTypeScript, CodeLanguageJavaScript:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %s, supported languages: python, typescript, javascript", ErrUnsupportedLanguage, s)
	}
}

// codeToolbox 把一段代码转换成可以在沙箱 shell 中执行的命令
type codeToolbox interface {
	runCommand(code string, params *CodeRunParams) string
}

func newCodeToolbox(language CodeLanguage) (codeToolbox, error) {
	switch language {
	case CodeLanguagePython, "":
		return pythonCodeToolbox{}, nil
	case CodeLanguageTypeScript, CodeLanguageJavaScript:
		return tsCodeToolbox{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
}

type pythonCodeToolbox struct{}

func (pythonCodeToolbox) runCommand(code string, params *CodeRunParams) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	envs, argv := codeRunArgs(params)
	script := fmt.Sprintf("echo %s | base64 --decode | %spython3 -u - %s", encoded, envs, argv)
	return "sh -c " + shellQuote(strings.TrimSpace(script))
}

type tsCodeToolbox struct{}

func (tsCodeToolbox) runCommand(code string, params *CodeRunParams) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	envs, argv := codeRunArgs(params)
	script := fmt.Sprintf(`echo %s | base64 --decode | %snpx ts-node -O "{\"module\":\"CommonJS\"}" -e "$(cat)" x %s 2>&1 | grep -vE "npm notice|npm warn exec"`,
		encoded, envs, argv)
	return "sh -c " + shellQuote(script)
}

// codeRunArgs 返回 "K=V " 形式的环境变量前缀和空格分隔的参数，值都已做 shell 转义
func codeRunArgs(params *CodeRunParams) (envs, argv string) {
	if params == nil {
		return "", ""
	}
	keys := make([]string, 0, len(params.Env))
	for k := range params.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(shellQuote(params.Env[k]))
		b.WriteByte(' ')
	}

	args := make([]string, 0, len(params.Argv))
	for _, a := range params.Argv {
		args = append(args, shellQuote(a))
	}
	return b.String(), strings.Join(args, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
