// args.go - Parser fuer benutzerdefinierte Engine-Argumente
//
// Diese Datei enthaelt:
// - SplitArgs: shell-artiges Zerlegen der custom_args-Option
// - die pro Recipe reservierten Flags, die Nutzer nicht setzen duerfen
package engines

import (
	"fmt"
	"strings"

	"github.com/lemonade-sdk/lemonade/api"
)

// reservedFlags verwaltet das Gateway selbst; sie in custom_args zu
// setzen wuerde den Adapter unterlaufen
var reservedFlags = map[api.Recipe][]string{
	api.RecipeLlamaCPP:   {"--port", "--host", "--model", "-m", "--mmproj", "--embeddings", "--reranking"},
	api.RecipeRyzenAILLM: {"--port", "--model"},
	api.RecipeWhisperCPP: {"--port", "--model", "-m"},
	api.RecipeKokoro:     {"--port", "--model-dir"},
	api.RecipeSDCPP:      {"--port", "--model", "-m"},
}

// SplitArgs zerlegt eine Argument-Zeile shell-artig: Whitespace trennt,
// einfache und doppelte Anfuehrungszeichen gruppieren
func SplitArgs(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote rune
	inArg := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in custom arguments")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

// customArgs liest und validiert die custom_args-Option eines Requests.
// Reservierte Flags fuehren zu einem invalid_request_error.
func customArgs(recipe api.Recipe, options api.RecipeOptions) ([]string, error) {
	raw := options.String(api.OptionCustomArgs)
	if raw == "" {
		return nil, nil
	}
	args, err := SplitArgs(raw)
	if err != nil {
		return nil, api.ErrInvalidRequest("%v", err)
	}

	reserved := reservedFlags[recipe]
	for _, arg := range args {
		flag, _, _ := strings.Cut(arg, "=")
		for _, res := range reserved {
			if flag == res {
				return nil, api.ErrInvalidRequest(
					"argument %q is managed by the server and cannot be overridden", res)
			}
		}
	}
	return args, nil
}
