package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/retzproject/retz/internal/broker"
	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
)

// stubDispatchStore provides a minimal DispatchStore implementation for
// tests. Jobs are held in a map keyed by id; transitions apply in memory with
// the real state machine.
type stubDispatchStore struct {
	jobs        map[int]*model.Job
	apps        map[string]*model.Application
	frameworkID string

	findFitErr error
	applyErr   error

	reverted []int
}

func newStubDispatchStore(jobs ...*model.Job) *stubDispatchStore {
	s := &stubDispatchStore{
		jobs: make(map[int]*model.Job),
		apps: make(map[string]*model.Application),
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubDispatchStore) FindFit(_ context.Context, _ []string, cpu int, memMB int) ([]*model.Job, error) {
	if s.findFitErr != nil {
		return nil, s.findFitErr
	}
	var fit []*model.Job
	var usedCPU, usedMem int
	for id := 0; id < 1000; id++ {
		j, ok := s.jobs[id]
		if !ok || j.State != model.JobQueued {
			continue
		}
		if usedCPU+j.Resources.CPU > cpu || usedMem+j.Resources.MemMB > memMB {
			break
		}
		usedCPU += j.Resources.CPU
		usedMem += j.Resources.MemMB
		fit = append(fit, j)
	}
	return fit, nil
}

func (s *stubDispatchStore) ApplyTransitions(_ context.Context, batch []data.JobTransition) ([]*model.Job, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	// All or nothing, like the real store.
	staged := make([]*model.Job, 0, len(batch))
	for _, jt := range batch {
		j, ok := s.jobs[jt.ID]
		if !ok {
			return nil, data.ErrJobNotFound
		}
		cp := *j
		if err := cp.Apply(jt.Transition); err != nil {
			return nil, err
		}
		staged = append(staged, &cp)
	}
	for _, j := range staged {
		s.jobs[j.ID] = j
	}
	return staged, nil
}

func (s *stubDispatchStore) RevertToQueued(_ context.Context, id int) error {
	j, ok := s.jobs[id]
	if !ok {
		return data.ErrJobNotFound
	}
	if j.State == model.JobStarting {
		j.State = model.JobQueued
		j.TaskID = ""
		j.URL = ""
		j.Started = ""
	}
	s.reverted = append(s.reverted, id)
	return nil
}

func (s *stubDispatchStore) GetJobFromTaskID(_ context.Context, taskID string) (*model.Job, error) {
	for _, j := range s.jobs {
		if j.TaskID == taskID {
			return j, nil
		}
	}
	return nil, nil
}

func (s *stubDispatchStore) UpdateJob(_ context.Context, id int, tr model.Transition) (*model.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	if err := j.Apply(tr); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *stubDispatchStore) GetApplication(_ context.Context, appid string) (*model.Application, error) {
	return s.apps[appid], nil
}

func (s *stubDispatchStore) GetFrameworkID(context.Context) (string, error) {
	return s.frameworkID, nil
}

func (s *stubDispatchStore) SetFrameworkID(_ context.Context, value string) (bool, error) {
	inserted := s.frameworkID == ""
	s.frameworkID = value
	return inserted, nil
}

// stubBroker records launches and declines, optionally failing launches for
// selected task id prefixes.
type stubBroker struct {
	launches   []broker.LaunchRequest
	declined   []string
	killed     []string
	reconciled bool

	failLaunchForJob int
}

func (b *stubBroker) Launch(_ context.Context, req broker.LaunchRequest) error {
	if b.failLaunchForJob > 0 && strings.HasPrefix(req.TaskID, fmt.Sprintf("retz-%d-", b.failLaunchForJob)) {
		return errors.New("agent refused task")
	}
	b.launches = append(b.launches, req)
	return nil
}

func (b *stubBroker) Decline(_ context.Context, offerID string) error {
	b.declined = append(b.declined, offerID)
	return nil
}

func (b *stubBroker) Kill(_ context.Context, taskID string) error {
	b.killed = append(b.killed, taskID)
	return nil
}

func (b *stubBroker) Reconcile(context.Context, []string) error {
	b.reconciled = true
	return nil
}
