// Package ui renders the command line output: styled status lines and a
// download progress line.
package ui
