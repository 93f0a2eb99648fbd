package workerio

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/barrosov/crackfleet/internal/crackpool"
	"github.com/barrosov/crackfleet/internal/hostcrypt"
	"github.com/barrosov/crackfleet/internal/protocol"
)

// Result is the outcome of a worker's whole request/crack loop, for
// cmd/worker's final banner and exit code.
type Result struct {
	Found      bool
	Password   string
	ElapsedMs  float64
	Candidates uint64
}

// Run drives the worker lifecycle after the handshake: it validates
// the job's algorithm, spawns the reader goroutine, and loops
// requesting chunks until a find, a stop, or an error ends the job.
// conn must already have completed the MSG_REGISTER/MSG_JOB handshake
// (cmd/worker owns that, since it's connection setup rather than
// steady-state protocol).
func Run(conn net.Conn, job protocol.CrackJob, threads int, logger *logrus.Logger) (Result, error) {
	algo := hostcrypt.Algorithm(job.Algorithm)
	if err := validateAlgorithm(algo); err != nil {
		return Result{}, err
	}

	pool := crackpool.New(algo, job.Salt, job.TargetHash)
	jobAck := time.Now()
	client := NewClient(conn, pool, jobAck, logger)

	go client.RunReader()

	for {
		chunk, stop := client.RequestChunk()
		// A zero-count grant can never make progress; treat it as a
		// terminal stop rather than re-requesting forever.
		if stop || chunk.Count == 0 {
			res := Result{Found: false, ElapsedMs: elapsedMs(jobAck), Candidates: pool.TestedTotal()}
			_ = client.SendResult(protocol.CrackResult{Found: false, WorkerCrackTimeMs: res.ElapsedMs})
			logger.Info("workerio: stop received, no password found")
			return res, nil
		}

		logger.WithFields(logrus.Fields{
			"chunk_start": chunk.Start,
			"chunk_count": chunk.Count,
		}).Info("workerio: cracking chunk")

		found, password, _ := pool.Crack(chunk.Start, chunk.Count, threads)

		if found {
			res := Result{Found: true, Password: password, ElapsedMs: elapsedMs(jobAck), Candidates: pool.TestedTotal()}
			if err := client.SendResult(protocol.CrackResult{
				Found:             true,
				Password:          password,
				WorkerCrackTimeMs: res.ElapsedMs,
			}); err != nil {
				return res, err
			}
			logger.WithField("password", password).Info("workerio: password found")
			return res, nil
		}

		if pool.StopRequested() {
			res := Result{Found: false, ElapsedMs: elapsedMs(jobAck), Candidates: pool.TestedTotal()}
			_ = client.SendResult(protocol.CrackResult{Found: false, WorkerCrackTimeMs: res.ElapsedMs})
			logger.Info("workerio: stop received mid-chunk, no password found")
			return res, nil
		}
		// Otherwise the chunk exhausted without a find; loop and
		// request the next one.
	}
}

func elapsedMs(since time.Time) float64 {
	return float64(time.Since(since)) / float64(time.Millisecond)
}
