package env

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses a dotenv file. A missing file yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return ParseEnvBuffer(buf), nil
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits KEY=VALUE, dropping an optional "export " and matching quotes.
func ProcessEnvLine(line string) EnvLine {
	line = strings.TrimPrefix(line, "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: strings.TrimSpace(line)}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

// interpolate expands ${NAME} and ${NAME:-default} from vars, and ${env:NAME} from
// the process environment. Unresolved references without a default are kept.
func interpolate(input string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(input, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(input[start:], '}')
		if end < 0 {
			break
		}
		end += start
		b.WriteString(input[:start])
		ref := input[start : end+1]
		name, def, _ := strings.Cut(input[start+2:end], ":-")
		var val string
		if envName, ok := strings.CutPrefix(name, "env:"); ok {
			val = os.Getenv(envName)
		} else {
			val = vars[name]
		}
		switch {
		case name == "":
			b.WriteString(ref)
		case val != "":
			b.WriteString(val)
		case def != "":
			b.WriteString(def)
		default:
			b.WriteString(ref)
		}
		input = input[end+1:]
	}
	b.WriteString(input)
	return b.String()
}

// ParseEnvBuffer parses dotenv content. Blank lines and # comments are skipped, and
// values may reference earlier or later keys.
func ParseEnvBuffer(buf []byte) []EnvLine {
	envs := make([]EnvLine, 0)
	vars := make(map[string]string)
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		env := ProcessEnvLine(line)
		if env.Key == "" {
			continue
		}
		env.Val = interpolate(env.Val, vars)
		vars[env.Key] = env.Val
		envs = append(envs, env)
	}
	for i := range envs {
		envs[i].Val = interpolate(envs[i].Val, vars)
	}
	return envs
}
