package npm

import (
	"fmt"
	"os/exec"
)

// Toolchain wraps the npm binary. Installs are kept free of side effects:
// no install scripts, no lockfile, no audit or funding chatter, production
// dependencies only.
type Toolchain struct {
	npmPath string
}

// NewToolchain creates a toolchain using the given npm binary, or "npm" from
// PATH when empty.
func NewToolchain(npmPath string) *Toolchain {
	if npmPath == "" {
		npmPath = "npm"
	}
	return &Toolchain{npmPath: npmPath}
}

// Install installs exactly pkg@version under targetDir. The resulting
// dependency tree lands in targetDir/node_modules.
func (t *Toolchain) Install(pkg, version, targetDir string) error {
	cmd := exec.Command(t.npmPath, "install",
		fmt.Sprintf("%s@%s", pkg, version),
		"--prefix", targetDir,
		"--ignore-scripts",
		"--no-package-lock",
		"--no-audit",
		"--no-fund",
		"--omit=dev",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("npm install %s@%s failed: %w (output: %s)", pkg, version, err, string(output))
	}
	return nil
}
