package consterr

//ConstErr allows sentinel errors to be declared as constants
type ConstErr string

//Error returns the underlying message
func (errstr ConstErr) Error() string { return string(errstr) }

var _ error = ConstErr("")
