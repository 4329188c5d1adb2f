// Low-level read operations for journal access.
//
// readLine is the one primitive the journal scanner needs: read a
// newline-delimited line starting at a given byte offset. Apart from the
// direct read of the trailing sentinel at open, the journal is read
// forward, sequentially, from offset zero to the sentinel — there is no
// binary search, so this is deliberately simpler than a general record
// store's read layer.
package txn

import (
	"bufio"
	"io"
	"os"
)

// readLine reads one line from f starting at offset, returning the bytes
// up to but excluding the newline, and the offset immediately after the
// newline (the next line's start). io.EOF is returned if offset is at or
// past the end of the file.
func readLine(f *os.File, offset int64) (data []byte, next int64, err error) {
	sz, err := fileSize(f)
	if err != nil {
		return nil, 0, err
	}
	if offset >= sz {
		return nil, 0, io.EOF
	}

	section := io.NewSectionReader(f, offset, sz-offset)
	reader := bufio.NewReader(section)
	data, err = reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(data) > 0 {
			// Unterminated trailing bytes: the journal invariant
			// guarantees every line ends in LF, so this is corrupt.
			return nil, 0, ErrCorrupt
		}
		return nil, 0, err
	}

	next = offset + int64(len(data))
	data = data[:len(data)-1] // strip the newline
	if len(data) > 0 && data[len(data)-1] == '\r' {
		data = data[:len(data)-1]
	}
	return data, next, nil
}

// fileSize returns the current size of f.
func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
