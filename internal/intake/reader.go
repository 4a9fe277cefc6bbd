package intake

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
)

const maxLine = 1 << 20

// LineError 单行解析失败，可以跳过继续读
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Reader 逐行读 jsonl，空行和 # 开头的行跳过
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Line 最近一次 Next 返回的行号（从 1 开始）
func (r *Reader) Line() int { return r.line }

// Next 读完返回 io.EOF
func (r *Reader) Next() (Request, error) {
	for r.sc.Scan() {
		r.line++
		b := bytes.TrimSpace(r.sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		var req Request
		if err := json.Unmarshal(b, &req); err != nil {
			return Request{}, &LineError{Line: r.line, Err: err}
		}
		return req, nil
	}
	if err := r.sc.Err(); err != nil {
		return Request{}, err
	}
	return Request{}, io.EOF
}
