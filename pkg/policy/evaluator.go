// Package policy evaluates access policies for receiver operations using
// CEL expressions. A policy decides whether a given user may act on a
// given event, based on the event owner, the receiver and the payload.
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Input carries the variables an access policy can reference.
type Input struct {
	UserID     string
	ReceiverID string
	EventOwner string
	Payload    map[string]interface{}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("receiver_id", cel.StringType),
		cel.Variable("event_owner", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("policy expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// Evaluate compiles and runs the policy expression against the input.
// It returns false on any compilation or evaluation failure.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, in Input) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("policy expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	payload := in.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"user_id":     in.UserID,
		"receiver_id": in.ReceiverID,
		"event_owner": in.EventOwner,
		"payload":     payload,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// CompileExpression precompiles a policy for repeated evaluation.
func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}
