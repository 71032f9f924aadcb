package executor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/marcelocantos/minish/internal/session"
	"github.com/marcelocantos/minish/internal/tree"
)

var newPipe = os.Pipe

// runInParallel evaluates both children concurrently, each in its own fork
// of s, and waits for both. Success iff both succeed.
func (e *Executor) runInParallel(ctx context.Context, s *session.Session, n *tree.Binary, level int) Status {
	var (
		wg          sync.WaitGroup
		left, right Status
	)
	wg.Add(2)
	go func(sub *session.Session) {
		defer wg.Done()
		left = e.Evaluate(ctx, sub, n.Left, level+1, n)
	}(s.Fork())
	go func(sub *session.Session) {
		defer wg.Done()
		right = e.Evaluate(ctx, sub, n.Right, level+1, n)
	}(s.Fork())
	wg.Wait()

	return both(left, right)
}

// runOnPipe connects the left child's stdout to the right child's stdin and
// evaluates both concurrently in forks of s. Each pipe end is closed as soon
// as the branch that owns it finishes, so the reader sees EOF once every
// writer is done. The result is the right child's status.
func (e *Executor) runOnPipe(ctx context.Context, s *session.Session, n *tree.Binary, level int) Status {
	pr, pw, err := newPipe()
	if err != nil {
		fmt.Fprintf(s.Stderr(), "minish: pipe: %v\n", err)
		e.Exit(int(Failure))
		return Failure
	}

	producer := s.Fork()
	producer.SetStdout(pw)
	consumer := s.Fork()
	consumer.SetStdin(pr)

	var (
		wg    sync.WaitGroup
		right Status
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer pw.Close()
		e.Evaluate(ctx, producer, n.Left, level+1, n)
	}()
	go func() {
		defer wg.Done()
		defer pr.Close()
		right = e.Evaluate(ctx, consumer, n.Right, level+1, n)
	}()
	wg.Wait()

	return right
}
