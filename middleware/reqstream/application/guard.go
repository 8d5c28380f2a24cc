package application

import (
	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/zap"
)

// AdmissionGuard é a política de descarte quando o buffer da sequência está cheio.
//
// O primeiro passo (desligar todas as fontes) é feito pela Sequence sob o seu lock.
// Reject faz o resto: emite "overloaded" com o contexto rejeitado e, se ninguém
// respondeu ainda, finaliza a resposta com 503 e corpo vazio.
type AdmissionGuard struct {
	Notifier *Notifier
	Logger   *zap.Logger
	// Status e Reason da resposta de rejeição. Zero usa 503 / "Service Unavailable".
	Status int
	Reason string
}

func (g AdmissionGuard) Reject(rc domain.RequestContext) {
	if g.Logger != nil {
		g.Logger.Debug("reqstream: buffer full, shedding request",
			zap.String("id", rc.ID),
			zap.String("source", rc.Source),
		)
	}

	if g.Notifier != nil {
		g.Notifier.Notify(domain.Event{Kind: domain.EventOverloaded, Context: rc})
	}

	if rc.Response == nil || rc.Response.Finished() {
		return
	}
	status, reason := g.Status, g.Reason
	if status == 0 {
		status = domain.StatusServiceUnavailable
	}
	if reason == "" {
		reason = "Service Unavailable"
	}
	rc.Response.Finish(status, reason)
}
