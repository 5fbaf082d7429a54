/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package archive implements the jar-file collaborator named in
// spec §1/§6: a thin wrapper over stdlib archive/zip that resolves
// class entries by slash-form name and parses a jar's MANIFEST.MF.
package archive

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Jar wraps an opened zip archive and indexes its entries by name for
// repeated class lookups.
type Jar struct {
	path    string
	reader  *zip.ReadCloser
	byName  map[string]*zip.File
}

// OpenJar opens the jar at path and indexes its entries.
func OpenJar(path string) (*Jar, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("embervm: opening jar %s: %w", path, err)
	}
	j := &Jar{path: path, reader: r, byName: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		j.byName[f.Name] = f
	}
	return j, nil
}

// Close releases the underlying zip reader.
func (j *Jar) Close() error { return j.reader.Close() }

// Path returns the filesystem path this jar was opened from.
func (j *Jar) Path() string { return j.path }

// ReadClass returns the raw bytes of className (slash form, no
// ".class" suffix), or found=false if the jar has no such entry.
func (j *Jar) ReadClass(className string) (data []byte, found bool, err error) {
	f, ok := j.byName[className+".class"]
	if !ok {
		return nil, false, nil
	}
	data, err = readZipFile(f)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Manifest parses and returns this jar's META-INF/MANIFEST.MF, or nil
// if the jar carries none.
func (j *Jar) Manifest() (*Manifest, error) {
	f, ok := j.byName["META-INF/MANIFEST.MF"]
	if !ok {
		return nil, nil
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("embervm: opening archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("embervm: reading archive entry %s: %w", f.Name, err)
	}
	return data, nil
}

// Manifest is a jar's key: value attribute table, parsed from
// META-INF/MANIFEST.MF. Parsing rules -- skip blank lines, skip lines
// with no colon, trim leading spaces and tabs after the colon, strip
// trailing CR/LF -- are carried over from the reference
// implementation's ManifestFile line parser.
type Manifest struct {
	Attributes map[string]string
}

// MainClass returns the manifest's Main-Class attribute, if present.
func (m *Manifest) MainClass() (string, bool) {
	v, ok := m.Attributes["Main-Class"]
	return v, ok
}

// ParseManifest parses raw MANIFEST.MF bytes into attribute pairs.
func ParseManifest(data []byte) *Manifest {
	m := &Manifest{Attributes: make(map[string]string)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := line[:colon]
		value := line[colon+1:]
		value = strings.TrimLeft(value, " \t")
		m.Attributes[key] = value
	}
	return m
}
