/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"os"
	"path/filepath"

	"embervm/archive"
)

// DirSource is a Source backed by a directory of loose .class files on
// disk, addressed the way a classpath directory entry is: className
// "java/lang/Object" resolves to "<root>/java/lang/Object.class".
type DirSource struct {
	root string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource { return &DirSource{root: dir} }

func (d *DirSource) Name() string { return d.root }

func (d *DirSource) Lookup(className string) ([]byte, bool, error) {
	path := filepath.Join(d.root, filepath.FromSlash(className)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// JarSource is a Source backed by a single jar file, opened once and
// kept resident for the registry's lifetime.
type JarSource struct {
	jar *archive.Jar
}

// NewJarSource opens path as a jar and returns a Source over it.
func NewJarSource(path string) (*JarSource, error) {
	jar, err := archive.OpenJar(path)
	if err != nil {
		return nil, err
	}
	return &JarSource{jar: jar}, nil
}

func (j *JarSource) Name() string { return j.jar.Path() }

func (j *JarSource) Lookup(className string) ([]byte, bool, error) {
	return j.jar.ReadClass(className)
}

// Close releases the underlying jar file handle.
func (j *JarSource) Close() error { return j.jar.Close() }

// MapSource is an in-memory Source that supplies class bytes without
// touching the filesystem.
type MapSource struct {
	name    string
	classes map[string][]byte
}

// NewMapSource returns a Source over a caller-supplied className ->
// raw-bytes map.
func NewMapSource(name string, classes map[string][]byte) *MapSource {
	return &MapSource{name: name, classes: classes}
}

func (m *MapSource) Name() string { return m.name }

func (m *MapSource) Lookup(className string) ([]byte, bool, error) {
	data, ok := m.classes[className]
	return data, ok, nil
}
