// Package infra contém implementações concretas para os contratos do pacote domain.
//
// Exemplos:
//   - ChanPool: semáforo de vagas do Dispatcher
//   - Store: token bucket por cliente usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: contagem de requests descartados
//   - Metrics, OverloadLogger, EventFeed: observers do evento "overloaded"
package infra
