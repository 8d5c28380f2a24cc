// Package domain define os contratos do reqstream: o par request/response entregue
// por uma fonte, a capacidade de attach/detach de uma fonte e os eventos observáveis.
//
// Este pacote não depende de net/http nem de implementações concretas.
// O adapter HTTP (pacote reqstream) e a infra implementam estes contratos; a camada
// application só conhece o que está aqui.
package domain
