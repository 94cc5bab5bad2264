package webhooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"hookd/internal/executor"
	"hookd/pkg/errors"
)

// TaskRunner backs a TaskReceiver with an actual task lifecycle.
type TaskRunner interface {
	NewTask(ctx context.Context, taskID string, kwargs map[string]interface{}) (string, error)
	TaskStatus(ctx context.Context, taskID string) (state string, meta map[string]interface{}, err error)
	CancelTask(ctx context.Context, taskID string) (string, error)
}

// UnimplementedTaskRunner fails every action. Embed it when only part
// of the protocol is supported; calling an unimplemented action is a
// programming error and surfaces as a processing failure.
type UnimplementedTaskRunner struct{}

func (UnimplementedTaskRunner) NewTask(ctx context.Context, taskID string, kwargs map[string]interface{}) (string, error) {
	return "", fmt.Errorf("NewTask: %w", errors.ErrNotImplemented)
}

func (UnimplementedTaskRunner) TaskStatus(ctx context.Context, taskID string) (string, map[string]interface{}, error) {
	return "", nil, fmt.Errorf("TaskStatus: %w", errors.ErrNotImplemented)
}

func (UnimplementedTaskRunner) CancelTask(ctx context.Context, taskID string) (string, error) {
	return "", fmt.Errorf("CancelTask: %w", errors.ErrNotImplemented)
}

// TaskReceiver drives long-running tasks through webhook payloads of
// the form:
//
//	{
//	    "action": "new_task" | "get_status" | "cancel_task",
//	    "task_id": <caller-chosen id>,
//	    "kwargs": { ... }
//	}
//
// Unknown actions answer with "Invalid action". Every handled payload
// records a 200 response.
type TaskReceiver struct {
	Base
	runner TaskRunner
}

func NewTaskReceiver(id string, runner TaskRunner, opts ...BaseOption) *TaskReceiver {
	return &TaskReceiver{
		Base:   NewBase(id, opts...),
		runner: runner,
	}
}

func (t *TaskReceiver) Run(ctx context.Context, event *Event) error {
	taskID, _ := event.Payload["task_id"].(string)
	response := map[string]interface{}{"message": "Invalid action"}

	switch event.Action() {
	case "new_task":
		kwargs, _ := event.Payload["kwargs"].(map[string]interface{})
		if _, err := t.runner.NewTask(ctx, taskID, kwargs); err != nil {
			return err
		}
		response["message"] = fmt.Sprintf("Started task [%s]", taskID)

	case "get_status":
		state, meta, err := t.runner.TaskStatus(ctx, taskID)
		if err != nil {
			return err
		}
		response = map[string]interface{}{"state": state}
		for k, v := range meta {
			response[k] = v
		}

	case "cancel_task":
		message, err := t.runner.CancelTask(ctx, taskID)
		if err != nil {
			return err
		}
		response["message"] = message
	}

	event.ResponseCode = http.StatusOK
	event.Response = response
	return nil
}

// executorTask adapts a single named executor task to the TaskRunner
// protocol.
type executorTask struct {
	exec executor.Executor
	task string
}

func (e *executorTask) NewTask(ctx context.Context, taskID string, kwargs map[string]interface{}) (string, error) {
	if err := e.exec.Submit(ctx, taskID, e.task, kwargs); err != nil {
		return "", err
	}
	return taskID, nil
}

func (e *executorTask) TaskStatus(ctx context.Context, taskID string) (string, map[string]interface{}, error) {
	job, err := e.exec.Status(ctx, taskID)
	if stderrors.Is(err, executor.ErrJobNotFound) {
		// Unknown task IDs read as pending, mirroring result backends
		// that cannot distinguish "never submitted" from "not started".
		return string(executor.StatePending), map[string]interface{}{}, nil
	}
	if err != nil {
		return "", nil, err
	}

	meta := map[string]interface{}{}
	if job.State == executor.StateProgress {
		meta = job.Meta
	}
	return string(job.State), meta, nil
}

func (e *executorTask) CancelTask(ctx context.Context, taskID string) (string, error) {
	if err := e.exec.Revoke(ctx, taskID); err != nil && !stderrors.Is(err, executor.ErrJobNotFound) {
		return "", err
	}
	return "Revoked task", nil
}

// NewExecutorTaskReceiver builds a TaskReceiver whose new_task action
// submits the named executor task under the caller-chosen task id.
func NewExecutorTaskReceiver(id string, exec executor.Executor, task string, opts ...BaseOption) *TaskReceiver {
	return NewTaskReceiver(id, &executorTask{exec: exec, task: task}, opts...)
}

// ChainStep is one task of a workflow, paired with the kwarg names it
// accepts from the payload.
type ChainStep struct {
	Name string
	Func executor.TaskFunc
	Args []string
}

// ChainStage is one position in a workflow: a single step, or several
// run concurrently.
type ChainStage []ChainStep

// chainRunner executes a fixed workflow of stages under a single job
// id. Stages run strictly in order; steps inside a stage run
// concurrently and the stage fails if any step fails.
type chainRunner struct {
	executorTask
	workflow []ChainStage
}

func chainTaskName(receiverID string) string {
	return "chain:" + receiverID
}

func (c *chainRunner) run(ctx context.Context, job executor.Job) (map[string]interface{}, error) {
	// carry is the previous stage's result: one map after a single
	// step, an ordered slice of maps after a group.
	var carry interface{}

	for i, stage := range c.workflow {
		if job.Progress != nil {
			job.Progress(map[string]interface{}{
				"stage":  i,
				"stages": len(c.workflow),
			})
		}

		if len(stage) == 1 {
			step := stage[0]
			out, err := step.Func(ctx, executor.Job{
				ID:   job.ID,
				Task: step.Name,
				Args: c.stepArgs(step, job, carry),
			})
			if err != nil {
				return nil, fmt.Errorf("step %s failed: %w", step.Name, err)
			}
			carry = out
			continue
		}

		outs := make([]interface{}, len(stage))
		g, groupCtx := errgroup.WithContext(ctx)
		for idx, step := range stage {
			idx, step := idx, step
			g.Go(func() error {
				out, err := step.Func(groupCtx, executor.Job{
					ID:   job.ID,
					Task: step.Name,
					Args: c.stepArgs(step, job, carry),
				})
				if err != nil {
					return fmt.Errorf("step %s failed: %w", step.Name, err)
				}
				outs[idx] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		carry = outs
	}

	if result, ok := carry.(map[string]interface{}); ok {
		return result, nil
	}
	return nil, nil
}

// stepArgs filters the submitted kwargs down to the names the step
// declared, injects parent_id so steps can reference the workflow job,
// and hands the preceding stage's result over as parent_result.
func (c *chainRunner) stepArgs(step ChainStep, job executor.Job, carry interface{}) map[string]interface{} {
	args := make(map[string]interface{}, len(step.Args)+2)
	for _, name := range step.Args {
		if v, ok := job.Args[name]; ok {
			args[name] = v
		}
	}
	args["parent_id"] = job.ID
	if carry != nil {
		args["parent_result"] = carry
	}
	return args
}

// NewChainTaskReceiver builds a TaskReceiver that runs a workflow of
// stages as one executor job. The workflow task is registered on the
// pool under a name derived from the receiver id.
func NewChainTaskReceiver(id string, pool *executor.Pool, workflow []ChainStage, opts ...BaseOption) *TaskReceiver {
	runner := &chainRunner{
		executorTask: executorTask{exec: pool, task: chainTaskName(id)},
		workflow:     workflow,
	}
	pool.RegisterTask(chainTaskName(id), runner.run)
	return NewTaskReceiver(id, runner, opts...)
}
