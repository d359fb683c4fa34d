// Package environment discovers Python interpreter environments for a
// project directory.
//
// Detection is read-only. Local virtual environments are found by
// conventional directory names and by pyvenv.cfg markers. Environments kept
// elsewhere by conda, poetry or pipenv are found by reading the project's
// manifest and asking the tool, through the process runner's collecting
// mode. A tool that is missing, slow or failing is skipped; a circuit
// breaker per tool stops repeated calls to one that keeps failing.
//
// Tools:
//   - environment.detect: Environments of one project
//   - environment.detect_workspace: Environments of every project below a root
package environment
