package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alpack/alpack/internal/model"
)

const (
	// sandboxPath is the fixed PATH exported inside every sandbox session.
	sandboxPath = "/bin:/sbin:/usr/bin:/usr/sbin:/usr/libexec"
	// iconsDir is the host icon theme tree scanned for cursor themes.
	iconsDir = "/usr/share/icons"
	// dbusSocket is the host system bus socket exposed to the guest.
	dbusSocket = "/var/run/dbus/system_bus_socket"
)

// extraBindCandidates are the optional host paths (audio config, fonts,
// themes) bound into the sandbox when they exist. Evaluation order is fixed
// so plans are stable across runs for identical host state.
var extraBindCandidates = []string{
	"/etc/asound.conf",
	"/etc/fonts",
	"/usr/share/font-config",
	"/usr/share/fontconfig",
	"/usr/share/fonts",
	"/usr/share/themes",
}

// hostIdentityFiles are host identity and resolver files the bwrap variant
// exposes read-only so name resolution and time zones work in the guest.
var hostIdentityFiles = []string{
	"/etc/host.conf",
	"/etc/hosts",
	"/etc/hosts.equiv",
	"/etc/netgroup",
	"/etc/networks",
	"/etc/nsswitch.conf",
	"/etc/resolv.conf",
	"/etc/localtime",
}

// BuildPlan produces the fully resolved isolation plan for one request.
//
// The two backends are intentionally not hidden behind a shared argument
// abstraction: their bind direction and flag naming asymmetries are real
// (proot binds single source flags, bwrap binds source/destination pairs)
// and stay visible in the two builders below.
func BuildPlan(kind model.BackendKind, req model.SandboxRequest, probes HostProber, id model.Identity, homeDir string) (model.IsolationPlan, error) {
	switch kind {
	case model.BackendProot:
		return buildProotPlan(req, probes, id), nil
	case model.BackendBwrap:
		return buildBwrapPlan(req, probes, id, homeDir), nil
	}

	return model.IsolationPlan{}, fmt.Errorf("unsupported backend %q: %w", kind, model.ErrNotValid)
}

func buildProotPlan(req model.SandboxRequest, probes HostProber, id model.Identity) model.IsolationPlan {
	args := []string{"-R", req.RootfsDir, "--bind=/media", "--bind=/mnt"}
	args = append(args, strings.Fields(req.BindArgs)...)

	if !req.NoGroups {
		// Self-referential binds: the guest's own identity files bound onto
		// themselves, so the identity data already baked into the rootfs wins
		// over anything proot would synthesize.
		args = append(args,
			"--bind="+filepath.Join(req.RootfsDir, "etc", "passwd")+":/etc/passwd",
			"--bind="+filepath.Join(req.RootfsDir, "etc", "group")+":/etc/group",
		)
	}

	if !req.IgnoreExtraBinds {
		for _, path := range extraBindCandidates {
			if probes.PathExists(path) {
				args = append(args, "--bind="+path)
			}
		}
		for _, path := range probes.IconCursorDirs(iconsDir) {
			args = append(args, "--bind="+path)
		}
	}

	if req.UseRoot {
		args = append(args, "-0")
	}

	return model.IsolationPlan{
		Args: args,
		Env:  append(identityEnv(model.BackendProot, req.UseRoot, id), "SHELL=/bin/sh", "PATH="+sandboxPath),
	}
}

func buildBwrapPlan(req model.SandboxRequest, probes HostProber, id model.Identity, homeDir string) model.IsolationPlan {
	args := []string{
		"--unshare-user",
		"--share-net",
		"--bind", req.RootfsDir, "/",
		"--die-with-parent",
	}

	for _, path := range hostIdentityFiles {
		args = append(args, "--ro-bind-try", path, path)
	}

	args = append(args,
		"--dev-bind", "/dev", "/dev",
		"--ro-bind", "/sys", "/sys",
		"--bind-try", "/proc", "/proc",
		"--bind-try", "/tmp", "/tmp",
		"--bind-try", "/run", "/run",
		"--ro-bind", dbusSocket, dbusSocket,
		"--bind", homeDir, homeDir,
		"--bind", "/media", "/media",
		"--bind", "/mnt", "/mnt",
	)

	args = append(args, strings.Fields(req.BindArgs)...)
	args = append(args, "--setenv", "PATH", sandboxPath)

	if !req.NoGroups {
		// Unlike proot, the host's live identity files are exposed read-only.
		args = append(args,
			"--ro-bind-try", "/etc/passwd", "/etc/passwd",
			"--ro-bind-try", "/etc/group", "/etc/group",
		)
	}

	if !req.IgnoreExtraBinds {
		for _, path := range extraBindCandidates {
			if probes.PathExists(path) {
				args = append(args, "--ro-bind", path, path)
			}
		}
		for _, path := range probes.IconCursorDirs(iconsDir) {
			args = append(args, "--ro-bind", path, path)
		}
	}

	if req.UseRoot {
		args = append(args,
			"--uid", "0",
			"--gid", "0",
			"--setenv", "USER", "root",
			"--setenv", "LOGNAME", "root",
		)
	}

	return model.IsolationPlan{
		Args: args,
		Env:  append(identityEnv(model.BackendBwrap, req.UseRoot, id), "SHELL=/bin/sh", "PATH="+sandboxPath),
	}
}
