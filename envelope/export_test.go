package envelope

// SetMaxEncodedSize lowers the size cap for a test and returns a restore func.
func SetMaxEncodedSize(n int) func() {
	old := maxEncodedSize
	maxEncodedSize = n
	return func() { maxEncodedSize = old }
}
