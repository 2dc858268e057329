package logstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"unicode/utf8"
)

const defaultReadSize = 32 << 10

type readerSource struct {
	rc      io.ReadCloser
	buf     []byte
	carry   []byte
	readErr error

	closeOnce sync.Once
	closeErr  error
}

// NewReaderSource 把一个流式 body 包装成 Source。
// 跨越两次读取的多字节字符会留到下一个分片，保证分片边界不会切断合法的 UTF-8 字符。
func NewReaderSource(rc io.ReadCloser, readSize int) Source {
	if readSize <= 0 {
		readSize = defaultReadSize
	}
	return &readerSource{rc: rc, buf: make([]byte, readSize)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.readErr != nil {
			if len(s.carry) > 0 {
				chunk := s.carry
				s.carry = nil
				return chunk, nil
			}
			return nil, s.readErr
		}

		n, err := s.rc.Read(s.buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, io.EOF) {
				err = ctxErr
			}
			s.readErr = err
		}
		if n == 0 {
			continue
		}

		data := append(s.carry, s.buf[:n]...)
		cut := completePrefix(data)
		s.carry = append([]byte(nil), data[cut:]...)
		if cut > 0 {
			return data[:cut:cut], nil
		}
	}
}

func (s *readerSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rc.Close()
	})
	return s.closeErr
}

// completePrefix 返回 data 中不以残缺字符结尾的最长前缀长度
func completePrefix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return i
		}
		break
	}
	return len(data)
}
