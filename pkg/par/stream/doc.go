// Package stream provides positioned reads over a mapped byte region. It is
// the reader hull jobs decode container contents from.
//
// Fixed-width values are big-endian. V64 is the container's compact
// integer encoding.
package stream
