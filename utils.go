package dotlite

// min returns the smallest of the given ints. It takes a variadic arg list
// since the overflow reader needs a three-way min.
func min(vs ...int) int {
	var m = vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
