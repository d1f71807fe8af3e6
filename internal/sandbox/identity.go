package sandbox

import (
	"fmt"
	"os"

	"github.com/alpack/alpack/internal/model"
)

// CurrentIdentity captures the caller's real host identity. It should be
// called once at process start and threaded explicitly through request
// construction instead of being read ambiently later.
func CurrentIdentity() model.Identity {
	return model.Identity{
		UID:  os.Getuid(),
		GID:  os.Getgid(),
		EUID: os.Geteuid(),
	}
}

// identityEnv computes the environment assignments that present the requested
// identity inside the sandbox. This is presentational only: it changes what
// shells and tools report, it grants no real privilege.
//
// bwrap handles root emulation through its own --uid/--gid remap arguments
// (added by the plan builder), so its root token only carries the prompt;
// proot carries the full set as environment hints.
func identityEnv(kind model.BackendKind, useRoot bool, id model.Identity) []string {
	if useRoot {
		if kind == model.BackendBwrap {
			return []string{"PS1=# "}
		}
		return []string{"PS1=# ", "USER=root", "LOGNAME=root", "UID=0", "EUID=0"}
	}

	return []string{"PS1=$ ", fmt.Sprintf("UID=%d", id.UID), fmt.Sprintf("EUID=%d", id.EUID)}
}
