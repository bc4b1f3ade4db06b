package execution

// MultiOutput is a tagged node result exposing several named output fields
// simultaneously. Connections select individual fields through their source
// slot instead of receiving the whole value.
type MultiOutput map[string]interface{}

// Result field names used by conditional nodes.
const (
	FieldConditionMet = "conditionMet"
	FieldTrueOutput   = "trueOutput"
	FieldFalseOutput  = "falseOutput"
)

// NewConditionalResult builds the multi-output result of a conditional node:
// the original input flows out of exactly one branch, the other carries nil.
func NewConditionalResult(conditionMet bool, input interface{}) MultiOutput {
	out := MultiOutput{
		FieldConditionMet: conditionMet,
		FieldTrueOutput:   nil,
		FieldFalseOutput:  nil,
	}
	if conditionMet {
		out[FieldTrueOutput] = input
	} else {
		out[FieldFalseOutput] = input
	}
	return out
}

// ConditionMet reports the conditionMet flag of a conditional result.
func (m MultiOutput) ConditionMet() bool {
	met, _ := m[FieldConditionMet].(bool)
	return met
}

// Field returns the named output field.
func (m MultiOutput) Field(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// AsMultiOutput reports whether a cached node result is tagged multi-output.
func AsMultiOutput(v interface{}) (MultiOutput, bool) {
	m, ok := v.(MultiOutput)
	return m, ok
}
