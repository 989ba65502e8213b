package main

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var varPattern = regexp.MustCompile(`\$\w+|\$\{[^}]+\}|\$@`)

// ParseVars expands $var, ${var} and $@ in a task command. Unknown variables
// are left in place for the shell.
func ParseVars(text string, targetname string) string {
	matches := varPattern.FindAllString(text, -1)

	for _, m := range matches {
		varname := strings.TrimPrefix(m, "$")
		varname = strings.Trim(varname, "{}")

		val := GetVar("$"+varname, targetname)
		if val == "" {
			log.Warn().Str("target", targetname).Msgf("undefined variable %s", m)
			continue
		}

		text = strings.Replace(text, m, val, 1)
	}

	return text
}
