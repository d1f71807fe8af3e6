package pkg_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alpack/alpack/internal/app/pkg"
	"github.com/alpack/alpack/internal/model"
	"github.com/alpack/alpack/internal/sandbox/sandboxmock"
)

func TestServiceManage(t *testing.T) {
	expReq := func(command string) model.SandboxRequest {
		return model.SandboxRequest{
			RootfsDir:        "/srv/rootfs",
			Command:          command,
			UseRoot:          true,
			IgnoreExtraBinds: true,
		}
	}

	tests := map[string]struct {
		opts   pkg.ManageOptions
		mock   func(m *sandboxmock.MockRunner)
		expErr bool
	}{
		"A missing rootfs directory should fail.": {
			opts:   pkg.ManageOptions{Args: []string{"add", "git"}},
			mock:   func(m *sandboxmock.MockRunner) {},
			expErr: true,
		},

		"Missing apk arguments should fail.": {
			opts:   pkg.ManageOptions{RootfsDir: "/srv/rootfs"},
			mock:   func(m *sandboxmock.MockRunner) {},
			expErr: true,
		},

		"An apk subcommand should be passed through as root.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"add", "git", "curl"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk add git curl")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"The install verb should be translated to apk add.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"install", "git"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk add git")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"The remove verb should be translated to apk del.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"remove", "git"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk del git")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"The update verb should refresh the index and upgrade everything.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"update"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk update && apk upgrade")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"Unknown verbs should not be translated.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"info", "-a", "git"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk info -a git")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"The fix verb should keep its extra flags.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"fix", "--reinstall"}},
			mock: func(m *sandboxmock.MockRunner) {
				m.On("Run", mock.Anything, expReq("apk fix --reinstall")).Once().Return(&model.ExecutionResult{}, nil)
			},
		},

		"A runner failure should be propagated.": {
			opts: pkg.ManageOptions{RootfsDir: "/srv/rootfs", Args: []string{"update"}},
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

			svc, err := pkg.NewService(pkg.ServiceConfig{Runner: mr})
			require.NoError(err)

			_, err = svc.Manage(context.TODO(), test.opts)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
		})
	}
}
