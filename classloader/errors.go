/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import "errors"

var (
	errNoSuchMethod = errors.New("no such method")
	errNoSuchField  = errors.New("no such field")
)
