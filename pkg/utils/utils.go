package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended (with an underscore) to every config key when read from the environment.
const EnvPrefix = "APP"

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return s == ""
}

// EnvName returns the environment variable that feeds a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + key
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(v *viper.Viper, cfg interface{}) error {
	rv := reflect.ValueOf(cfg).Elem()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if IsEmpty(tag) {
			continue
		}
		if err := v.BindEnv(tag); err != nil {
			return err
		}
	}
	return v.Unmarshal(cfg)
}

// FormatConfigErrors turns validator errors into a single config error naming the offending env vars.
// Values are never logged, only keys and failed rules.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return pkg.NewConfigError("invalid configuration", err)
	}

	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Field()
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("mapstructure"); !IsEmpty(tag) {
				key = tag
			}
		}
		logger.Error("invalid_config_value",
			zap.String("env", EnvName(key)),
			zap.String("rule", fe.Tag()),
			zap.String("param", fe.Param()))
		problems = append(problems, fmt.Sprintf("%s (%s)", EnvName(key), describeRule(fe)))
	}
	return pkg.NewConfigError("invalid configuration: "+strings.Join(problems, ", "), err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min", "gte":
		return "must be >= " + fe.Param()
	case "max", "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "url", "http_url":
		return "must be a valid URL"
	default:
		if IsEmpty(fe.Param()) {
			return fe.Tag()
		}
		return fe.Tag() + "=" + fe.Param()
	}
}
