// Package runtime provides the execution context for svn-auto-merge commands.
//
// It encapsulates shared dependencies wired from the configuration file, such
// as the SVN gateway, revision cursor, merge journal, and engine instance.
package runtime
