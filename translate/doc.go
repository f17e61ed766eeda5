// Package translate carries exceptions across the bridge in both
// directions.
//
// A dynamic exception reaching host code becomes an embed.DynamicException
// whose message is "<TypeName>: <message>". When the exception stands for a
// host throwable, that throwable becomes the cause. The stack trace lists
// the dynamic traceback innermost first, followed by the host frames.
//
// A host throwable reaching dynamic code becomes an exception whose type is
// picked by walking the throwable's class ancestry through a fixed table.
// The throwable itself rides along as the exception payload, and host
// frames are appended to the traceback.
//
// Translation never fails outright. Internal failures are logged and
// replaced by java.lang.Error on the host side or SystemError on the
// dynamic side.
package translate
