// Command termania runs the control core headless and talks to a running
// instance over the Text Tap socket.
package main

func main() {
	Execute()
}
