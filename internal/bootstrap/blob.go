package bootstrap

import "fmt"

const blobTemplate = `(function (env) {
var options = env.options, imports = env.imports, __imports = env.__imports;
var registerMsgHandler = env.registerMsgHandler, dropMsgHandler = env.dropMsgHandler;
var send = env.send, log = env.log;
%s
var __main = (%s
);
if (typeof __main !== "function") {
	throw new TypeError("worker main is not a function");
}
return function () { return __main.call(env, env); };
})`

// Blob assembles the executable source of a worker: the environment prelude,
// the resolved imports and the worker main. Evaluating it yields a function
// over the environment object that returns the entry point.
func Blob(main, imports string) string {
	return fmt.Sprintf(blobTemplate, imports, main)
}
