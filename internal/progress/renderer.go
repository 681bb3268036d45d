package progress

// Renderer accepts line-addressed draw commands. Offsets are relative to the
// line the cursor currently sits on: negative is up, positive is down.
type Renderer interface {
	// DrawLine moves by offset lines and writes text from the first column.
	// The cursor stays on that line.
	DrawLine(offset int, text string) error
	ClearToEndOfLine() error
	MoveCursor(offset int) error
	Flush() error
}
