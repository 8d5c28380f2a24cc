// Package reqstream adapta servidores HTTP (fontes push) numa sequência pull, FIFO e
// limitada, com descarte (503) quando o consumidor fica para trás.
//
// Visão geral (camadas):
//
//   - domain: contratos (RequestContext, Source, Handler, eventos), sem net/http
//   - application: Sequence, AdmissionGuard, Notifier e Dispatcher
//   - infra: pool de vagas, token bucket, stats (memória/Redis), métricas, logs, feed websocket
//   - reqstream (este pacote): a Source HTTP, Request/Response e a chave do cliente
//
// Fluxo:
//
//  1. O consumidor lê da Sequence (Next); a leitura liga o handler da sequência em todas as fontes
//  2. Cada request recebido por uma Source vira um RequestContext e é entregue à Sequence
//  3. Se há espaço no buffer, o contexto espera o consumidor, que responde pelo Response
//  4. Se não há, todas as fontes são desligadas, "overloaded" é emitido e o request recebe 503
//
// Uso mínimo:
//
//	src := reqstream.NewSource("public")
//	seq, err := application.NewSequence(application.Config{HighWaterMark: 1024}, src)
//	go http.ListenAndServe(":8080", src)
//	for rc := range seq.All(ctx) {
//		_, res, _ := reqstream.HTTP(rc)
//		res.WriteHeader(http.StatusOK)
//		res.End()
//	}
package reqstream
