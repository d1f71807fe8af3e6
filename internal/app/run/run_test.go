package run_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alpack/alpack/internal/app/run"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox/sandboxmock"
)

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		opts      run.RunOptions
		mock      func(m *sandboxmock.MockRunner)
		expResult *model.ExecutionResult
		expErr    bool
	}{
		"A missing rootfs directory should fail.": {
			opts:   run.RunOptions{Command: "apk update"},
			mock:   func(m *sandboxmock.MockRunner) {},
			expErr: true,
		},

		"The request should carry all options to the runner.": {
			opts: run.RunOptions{
				RootfsDir:        "/srv/rootfs",
				Command:          "apk update",
				BindArgs:         "--bind=/opt",
				UseRoot:          true,
				IgnoreExtraBinds: true,
				NoGroups:         true,
			},
			mock: func(m *sandboxmock.MockRunner) {
				expReq := model.SandboxRequest{
					RootfsDir:        "/srv/rootfs",
					Command:          "apk update",
					BindArgs:         "--bind=/opt",
					UseRoot:          true,
					IgnoreExtraBinds: true,
					NoGroups:         true,
				}
				m.On("Run", mock.Anything, expReq).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
			expResult: &model.ExecutionResult{ExitCode: 0},
		},

		"An empty command should start an interactive shell.": {
			opts: run.RunOptions{RootfsDir: "/srv/rootfs"},
			mock: func(m *sandboxmock.MockRunner) {
				expReq := model.SandboxRequest{RootfsDir: "/srv/rootfs"}
				m.On("Run", mock.Anything, expReq).Once().Return(&model.ExecutionResult{ExitCode: 0}, nil)
			},
			expResult: &model.ExecutionResult{ExitCode: 0},
		},

		"A runner failure should be propagated.": {
			opts: run.RunOptions{RootfsDir: "/srv/rootfs", Command: "true"},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("boom"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mr := sandboxmock.NewMockRunner(t)
			test.mock(mr)

			svc, err := run.NewService(run.ServiceConfig{Runner: mr})
			require.NoError(err)

			result, err := svc.Run(context.TODO(), test.opts)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expResult, result)
			}
		})
	}
}
