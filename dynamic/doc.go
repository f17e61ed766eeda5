// Package dynamic is the dynamically-typed side of the bridge: a small
// object model with classes, C3 method resolution order, descriptors,
// rich comparison and exceptions carrying tracebacks.
//
// Every value is an Object. Builtin values are plain pointers:
//
//	None          *NoneObject     list   *List
//	True, False   *Bool           tuple  *Tuple
//	int           *Int            dict   *Dict (insertion ordered)
//	float         *Float          memoryview *Buffer
//	str           *Str (code points, lone surrogates allowed)
//
// A raised exception is an *Exception, which implements error. Native
// functions report exceptions by returning them; Function.Call adds a
// traceback frame on the way out.
//
// Types are callable: Type.Call runs the nearest New along the MRO. The
// default New for object allocates an *Instance and calls __init__.
package dynamic
