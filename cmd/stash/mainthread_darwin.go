package main

import "golang.design/x/hotkey/mainthread"

// runMain keeps the process main thread for the Cocoa event loop the global
// shortcut depends on.
func runMain(fn func()) { mainthread.Init(fn) }
