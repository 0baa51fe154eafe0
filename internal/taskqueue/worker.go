package taskqueue

import (
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// Worker runs the asynq server delivering queued tasks
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker builds a worker for the Redis at redisAddr
func NewWorker(redisAddr string, sender NotificationSender, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotify, HandleNotifyTask(sender))
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency})
	return &Worker{srv: srv, mux: mux}
}

// Start processes tasks in the background
func (w *Worker) Start() error {
	log.Printf("TASKQUEUE: Starting workers")
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("start task workers: %w", err)
	}
	return nil
}

// Stop waits for in-flight tasks and stops the server
func (w *Worker) Stop() {
	log.Printf("TASKQUEUE: Stopping workers...")
	w.srv.Shutdown()
	log.Printf("TASKQUEUE: Workers stopped")
}
