// Package helpers holds fixtures and fakes shared by wspkg tests: git
// repositories, workspaces, a recording process runner and a compiler driver
// that writes marker files.
package helpers
