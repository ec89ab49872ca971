package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var ErrInvalidGateRule = errors.New("invalid gate rule")

type ValidationRule string

const (
	RuleGreaterThan    ValidationRule = "gt"
	RuleGreaterOrEqual ValidationRule = "gte"
	RuleLessThan       ValidationRule = "lt"
	RuleLessOrEqual    ValidationRule = "lte"
	RuleEmail          ValidationRule = "email"
	RulePhone          ValidationRule = "phone"
	RuleMinLength      ValidationRule = "min_length"
	RuleOneOf          ValidationRule = "one_of"
)

type FieldValidation struct {
	Field   string         `json:"field"`
	Rule    ValidationRule `json:"rule"`
	Value   any            `json:"value,omitempty"`
	Message string         `json:"message,omitempty"`
}

// GateRule é a configuração de entrada de um estágio.
type GateRule struct {
	RequiredFields   []string          `json:"required_fields,omitempty"`
	Validations      []FieldValidation `json:"validations,omitempty"`
	RequiresApproval bool              `json:"requires_approval,omitempty"`
	ApproverRoles    []string          `json:"approver_roles,omitempty"`
}

type StageGate struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	RecordType     RecordType `json:"record_type"`
	StageKey       string     `json:"stage_key"`
	Rules          GateRule   `json:"rules"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type VerdictKind string

const (
	VerdictOK    VerdictKind = "ok"
	VerdictGated VerdictKind = "gated"
)

type GateReason string

const (
	GateMissingFields    GateReason = "missing_fields"
	GateValidationFailed GateReason = "validation_failed"
	GateRequiresApproval GateReason = "requires_approval"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GateVerdict é a resposta do avaliador: ou ok, ou gated com um motivo.
type GateVerdict struct {
	Kind             VerdictKind  `json:"kind"`
	Reason           GateReason   `json:"reason,omitempty"`
	MissingFields    []string     `json:"missingFields,omitempty"`
	ValidationErrors []FieldError `json:"validationErrors,omitempty"`
	RequiresApproval bool         `json:"requiresApproval,omitempty"`
}

func Allowed() GateVerdict {
	return GateVerdict{Kind: VerdictOK}
}

func (v GateVerdict) IsGated() bool {
	return v.Kind == VerdictGated
}

const gateRuleSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"required_fields": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"uniqueItems": true
		},
		"validations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["field", "rule"],
				"additionalProperties": false,
				"properties": {
					"field": {"type": "string", "minLength": 1},
					"rule": {"enum": ["gt", "gte", "lt", "lte", "email", "phone", "min_length", "one_of"]},
					"value": {},
					"message": {"type": "string"}
				},
				"allOf": [
					{
						"if": {"properties": {"rule": {"enum": ["gt", "gte", "lt", "lte"]}}},
						"then": {"required": ["value"], "properties": {"value": {"type": ["number", "string"]}}}
					},
					{
						"if": {"properties": {"rule": {"const": "min_length"}}},
						"then": {"required": ["value"], "properties": {"value": {"type": "integer", "minimum": 0}}}
					},
					{
						"if": {"properties": {"rule": {"const": "one_of"}}},
						"then": {"required": ["value"], "properties": {"value": {"type": "array", "minItems": 1}}}
					}
				]
			}
		},
		"requires_approval": {"type": "boolean"},
		"approver_roles": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

var gateSchema = compileGateSchema()

func compileGateSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(gateRuleSchema))
	if err != nil {
		panic(fmt.Sprintf("gate schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("gate_rule.json", doc); err != nil {
		panic(fmt.Sprintf("gate schema: %v", err))
	}
	return c.MustCompile("gate_rule.json")
}

// ParseGateRule valida o JSON contra o schema antes de decodificar.
func ParseGateRule(raw []byte) (GateRule, error) {
	var rule GateRule
	if len(bytes.TrimSpace(raw)) == 0 {
		return rule, nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return rule, fmt.Errorf("%w: %v", ErrInvalidGateRule, err)
	}
	if err := gateSchema.Validate(inst); err != nil {
		return rule, fmt.Errorf("%w: %v", ErrInvalidGateRule, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rule); err != nil {
		return rule, fmt.Errorf("%w: %v", ErrInvalidGateRule, err)
	}
	return rule, nil
}
