// Package llm подключает языковую модель к llm шагам через langchaingo.
//
// NewModel создаёт клиента провайдера по Config, Client.Generate
// регистрируется в steps.Executor через SetModel.
package llm
