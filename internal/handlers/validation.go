package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/response"
	appValidator "github.com/charlesng35/mentorlink/pkg/validator"
)

// bindAndValidate reads the JSON body into dest and applies its validate tags. On failure the
// 400 envelope has already been written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeValidation(err)))
		return false
	}
	return true
}

var ruleMessages = map[string]func(field, param string) string{
	"required": func(f, _ string) string { return f + " is required" },
	"notblank": func(f, _ string) string { return f + " is required" },
	"max":      func(f, p string) string { return f + " must be at most " + p + " characters" },
	"min":      func(f, p string) string { return f + " must be at least " + p + " characters" },
	"oneof":    func(f, p string) string { return f + " must be one of: " + p },
}

func describeValidation(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}

	lines := make([]string, len(failures))
	for i, f := range failures {
		field := humanField(f.Field)
		if msg, ok := ruleMessages[f.Tag]; ok {
			lines[i] = msg(field, f.Param)
			continue
		}
		rule := f.Tag
		if f.Param != "" {
			rule += "=" + f.Param
		}
		lines[i] = field + " failed validation: " + rule
	}
	return strings.Join(lines, "; ")
}

// humanField turns "receiver_id" into "receiver id".
func humanField(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
