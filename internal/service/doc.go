package service

// Package service implements supervision of the processes of a compose file.
//
// Overview
// The Composer owns a set of Processes, one per service. It assigns each a
// color in declaration order, runs them all in an errgroup and returns once
// every child exited.
//
// A Process is a thin, opinionated wrapper around os/exec:
//   - splits the command into argv (quotes work, pipes and redirects do not)
//   - starts it in its own process group with the exact configured environment
//   - writes the pid to <root>/.app-compose/pids/<name>
//   - merges stdout and stderr into a lines.Multiplexer
//   - closes Done after Wait returned and the last partial line was flushed
//
// Data flow:
//
//   Composer              Process{name}            os/exec
//       |                    |                       |
//   Run -> color.Next() ---->|                       |
//       | g.Go(Run) -------->| Start() ------------->| Start()
//       |                    | PidDir.Write(pid)     |
//       |                    |<----- chunks ---------| stdout+stderr pipe
//       |                    | Multiplexer -> Console|
//       |                    |<----- Wait() ---------| (process exits)
//       |<------ Done -------|                       |
//
// Invariants:
//   - A Process is started at most once.
//   - Colors are a function of the declaration index only.
//   - All lines of a process are rendered before its Done is closed.
//   - Only setup errors fail a run, the exit status of a child never does.
//   - The first failure, or a cancelled context, sends SIGTERM to all
//     process groups. After the stop timeout the leader is killed, and once
//     it is reaped the rest of its group is killed too.
//   - ps and kill only trust a recorded pid while a process group with that
//     id exists, so a pid reused by an unrelated process is never signalled.
//
// internal/service/composer_test.go shows how Composer is meant to be used.
