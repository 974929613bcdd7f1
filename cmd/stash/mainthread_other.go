//go:build !darwin

package main

func runMain(fn func()) { fn() }
