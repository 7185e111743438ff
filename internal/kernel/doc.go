// Package kernel is the composition surface. It owns the concept
// directory, the sync catalog, the flow engine and the flow log, and
// exposes the operations everything outside builds on: handling a
// request, invoking a concept directly, registering concepts and
// syncs, and reading the flow log.
package kernel
