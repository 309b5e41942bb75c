package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/fitfinder/internal/locations"
	"github.com/mmeshcher/fitfinder/internal/validation"
)

// ValidationError содержит сообщения об ошибках по полям формы.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return validation.IsValidCNPJ(fl.Field().String())
	})
	_ = v.RegisterValidation("brstate", func(fl validator.FieldLevel) bool {
		_, ok := locations.StateByName(fl.Field().String())
		return ok
	})

	return v
}

// validateStruct проверяет структуру и переводит ошибки валидатора в ValidationError.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.add(fieldPath(fe), fieldMessage(fe))
	}
	return out
}

// fieldPath убирает имя корневой структуры: "GymInput.pricing.daily" -> "pricing.daily".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "cnpj":
		return "CNPJ inválido"
	case "brstate":
		return "Selecione um estado"
	case "email":
		return "Email inválido"
	case "gte":
		return "valor não pode ser negativo"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("selecione pelo menos %s", fe.Param())
		}
		return fmt.Sprintf("deve ter pelo menos %s caracteres", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("no máximo %s itens", fe.Param())
		}
		return fmt.Sprintf("máximo de %s caracteres", fe.Param())
	default:
		return "valor inválido"
	}
}
