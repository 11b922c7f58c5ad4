// Package tui provides the terminal user interface for svn-auto-merge.
//
// It handles:
//   - Interactive prompts and selections (using bubbletea and bubbles)
//   - The live merge cycle view with per-revision outcomes
//   - Terminal detection so unattended runs stay plain text
package tui
