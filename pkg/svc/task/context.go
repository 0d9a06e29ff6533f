package task

// Context is passed to a running task's Func. It exposes the owning
// TaskService (so the functor can build further tasks with TaskBuilder) and
// the header of the task currently executing (so newly built tasks can be
// attached as continuations of it, mirroring how the original engine derives
// a child TaskBuilder from the task that is currently running).
type Context struct {
	svc  *Service
	self *Header
}

// Service returns the TaskService this task was submitted to.
func (c *Context) Service() *Service { return c.svc }
