// Package queue — runtime очереди tasks.
//
// Worker забирает pending tasks из PostgreSQL и передаёт их движку:
//
//	API → repo.Create → mq: task.runnable → Worker.handleTaskRunnable
//	                                         ↓
//	                       repo.Claim (pending → running)
//	                                         ↓
//	                       orchestrator.ExecuteTask → repo.CompleteTask
//
// Если сообщение потерялось, тот же task подхватит polling по БД.
// Число одновременно выполняемых tasks ограничено семафором.
//
// Команды pause/resume/cancel публикуются в fanout exchange
// conductor.control. Каждый экземпляр слушает свою временную очередь
// и применяет команду, только если task выполняется у него.
package queue
