// Package application contém o núcleo do reqstream: a Sequence (buffer pull limitado),
// o AdmissionGuard (descarte com 503), o Notifier de eventos e o Dispatcher que consome
// a sequência.
//
// Depende apenas do pacote domain e não conhece net/http.
package application
