//go:build !linux

package cmd

func linkKind(string) string { return "" }
