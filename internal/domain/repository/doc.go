// Package repository define los tipos persistidos del control plane y los
// contratos que implementan los drivers de store (pg, memory).
package repository
