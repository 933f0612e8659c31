package composite

import "mercator-hq/saturn/pkg/event"

// SourceParametersProcessor computes the parameters a message source uses to
// build its response from the outcome of the flow.
type SourceParametersProcessor interface {
	SuccessfulExecutionResponseParameters(result *event.Event) map[string]any
	FailedExecutionResponseParameters(failed *event.Event) map[string]any
}

// SourceParametersFuncs implements SourceParametersProcessor with functions.
// Nil functions yield nil parameters.
type SourceParametersFuncs struct {
	Success func(result *event.Event) map[string]any
	Failure func(failed *event.Event) map[string]any
}

// SuccessfulExecutionResponseParameters implements SourceParametersProcessor.
func (f SourceParametersFuncs) SuccessfulExecutionResponseParameters(result *event.Event) map[string]any {
	if f.Success == nil {
		return nil
	}
	return f.Success(result)
}

// FailedExecutionResponseParameters implements SourceParametersProcessor.
func (f SourceParametersFuncs) FailedExecutionResponseParameters(failed *event.Event) map[string]any {
	if f.Failure == nil {
		return nil
	}
	return f.Failure(failed)
}

// OperationParametersProcessor provides the resolved parameters of an operation.
type OperationParametersProcessor interface {
	OperationParameters() map[string]any
}

// OperationParametersFunc adapts a function to OperationParametersProcessor.
type OperationParametersFunc func() map[string]any

// OperationParameters calls f.
func (f OperationParametersFunc) OperationParameters() map[string]any {
	if f == nil {
		return nil
	}
	return f()
}

// OperationParametersTransformer converts operation parameters into the
// message seen by operation policies and back.
type OperationParametersTransformer interface {
	FromParametersToMessage(parameters map[string]any) event.Message
	FromMessageToParameters(msg event.Message) map[string]any
}
