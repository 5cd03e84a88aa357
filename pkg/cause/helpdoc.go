package cause

import (
	"fmt"
	"os"
	"path/filepath"
)

const helpDoc = `WATCHDOGS - "cannot read from file"
====================================

The Pawn compiler stops with fatal error 100 when it cannot open a source or
include file. The file name it prints is the one it was looking for.

1. The file does not exist
--------------------------
  - Check the spelling and the case of the #include name. Linux file systems
    are case sensitive: <a_samp> and <A_SAMP> are different files.
  - Includes are searched in the -i directories. With watchdogs these come
    from [compiler].include_path in watchdogs.toml, by default
    pawno/include (SA-MP) or qawno/include (open.mp) plus gamemodes.
  - Install missing libraries with "watchdogs install user/repo", for example
    "watchdogs install Y-Less/sscanf?newer".

2. Insufficient permissions
---------------------------
  - The compiler must be able to read every include and the input file:
      chmod -R u+r pawno/include qawno/include gamemodes
  - On WSL, projects under /mnt/c may carry Windows ACLs. Copy the project
    into the Linux home directory.

3. Wrong input path
-------------------
  - [compiler].input in watchdogs.toml must point at an existing .pwn file,
    relative to the project root.
  - "watchdogs compile path/to/script.pwn" overrides it for one run.

4. Still failing
----------------
  - Run "watchdogs compile --prolix" to see every file the compiler opens,
    then open .watchdogs/compiler.log.
`

// WriteHelpDoc (re)writes the help document for unreadable source files
func WriteHelpDoc(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create help directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(helpDoc), 0644); err != nil {
		return fmt.Errorf("failed to write help document: %w", err)
	}
	return nil
}
