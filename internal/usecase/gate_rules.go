package usecase

import (
	"fmt"
	"net/mail"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

var defaultApproverRoles = []string{entity.RoleAdmin, entity.RoleManager}

// GateEvaluator aplica uma GateRule a um record. A ordem dos motivos é fixa:
// campos faltando, depois validações, depois aprovação.
type GateEvaluator struct {
	PhoneRegion string
}

func NewGateEvaluator(phoneRegion string) *GateEvaluator {
	if phoneRegion == "" {
		phoneRegion = "BR"
	}
	return &GateEvaluator{PhoneRegion: phoneRegion}
}

func (g *GateEvaluator) Evaluate(rule *entity.GateRule, rec *entity.Record, profile *entity.Profile) entity.GateVerdict {
	if rule == nil {
		return entity.Allowed()
	}

	var missing []string
	for _, field := range rule.RequiredFields {
		v, ok := rec.FieldValue(field)
		if !ok || isBlank(v) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return entity.GateVerdict{
			Kind:          entity.VerdictGated,
			Reason:        entity.GateMissingFields,
			MissingFields: missing,
		}
	}

	var failures []entity.FieldError
	for _, v := range rule.Validations {
		value, ok := rec.FieldValue(v.Field)
		if !ok || isBlank(value) {
			// campo opcional vazio não é validado
			continue
		}
		if msg, passed := g.check(v, value); !passed {
			if v.Message != "" {
				msg = v.Message
			}
			failures = append(failures, entity.FieldError{Field: v.Field, Message: msg})
		}
	}
	if len(failures) > 0 {
		return entity.GateVerdict{
			Kind:             entity.VerdictGated,
			Reason:           entity.GateValidationFailed,
			ValidationErrors: failures,
		}
	}

	if rule.RequiresApproval {
		roles := rule.ApproverRoles
		if len(roles) == 0 {
			roles = defaultApproverRoles
		}
		if profile == nil || !profile.HasRole(roles...) {
			return entity.GateVerdict{
				Kind:             entity.VerdictGated,
				Reason:           entity.GateRequiresApproval,
				RequiresApproval: true,
			}
		}
	}

	return entity.Allowed()
}

func (g *GateEvaluator) check(v entity.FieldValidation, value any) (string, bool) {
	switch v.Rule {
	case entity.RuleGreaterThan, entity.RuleGreaterOrEqual, entity.RuleLessThan, entity.RuleLessOrEqual:
		actual, err := entity.ToDecimal(value)
		if err != nil {
			return "must be a number", false
		}
		limit, err := entity.ToDecimal(v.Value)
		if err != nil {
			return "has an invalid threshold", false
		}
		return compareDecimal(v.Rule, actual, limit)

	case entity.RuleEmail:
		s := strings.TrimSpace(fmt.Sprint(value))
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return "must be a valid email address", false
		}
		return "", true

	case entity.RulePhone:
		if !isValidPhone(fmt.Sprint(value), g.PhoneRegion) {
			return "must be a valid phone number", false
		}
		return "", true

	case entity.RuleMinLength:
		n, err := toInt(v.Value)
		if err != nil {
			return "has an invalid length", false
		}
		if utf8.RuneCountInString(fmt.Sprint(value)) < n {
			return fmt.Sprintf("must have at least %d characters", n), false
		}
		return "", true

	case entity.RuleOneOf:
		options, ok := v.Value.([]any)
		if !ok {
			return "has no allowed values", false
		}
		got := fmt.Sprint(value)
		allowed := make([]string, 0, len(options))
		for _, o := range options {
			opt := fmt.Sprint(o)
			if opt == got {
				return "", true
			}
			allowed = append(allowed, opt)
		}
		return "must be one of: " + strings.Join(allowed, ", "), false
	}

	return fmt.Sprintf("unknown rule %q", v.Rule), false
}

func compareDecimal(rule entity.ValidationRule, actual, limit decimal.Decimal) (string, bool) {
	switch rule {
	case entity.RuleGreaterThan:
		return "must be greater than " + limit.String(), actual.GreaterThan(limit)
	case entity.RuleGreaterOrEqual:
		return "must be at least " + limit.String(), actual.GreaterThanOrEqual(limit)
	case entity.RuleLessThan:
		return "must be less than " + limit.String(), actual.LessThan(limit)
	default:
		return "must be at most " + limit.String(), actual.LessThanOrEqual(limit)
	}
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case fmt.Stringer:
		return strconv.Atoi(v.String())
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("not an integer: %T", value)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
